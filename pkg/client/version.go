package client

// Version is the SDK version sent in the X-SDK-Version and User-Agent headers.
const Version = "1.2.0"

// UserAgent is the User-Agent header value.
const UserAgent = "open-exchange-go/" + Version
