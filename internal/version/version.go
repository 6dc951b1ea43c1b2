package version

// Version is the hub release. Bumped by hand on release.
var Version = "0.3.0"
