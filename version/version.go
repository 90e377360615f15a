package version

// Version is the current release of the secureher server
const Version = "0.1.0"
