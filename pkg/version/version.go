package version

// Version is the release reported by the API and the startup log.
const Version = "v0.4.2"
