package assetserver

import (
	"net/url"
	"strings"
)

// embedQuery is the fixed part of the editor query string. The editor reads
// these flags to run embedded and speak the JSON message protocol.
const embedQuery = "embed=1&proto=json&libraries=1&spin=1&splash=0"

// EditorURL returns the address an editing surface loads for the given
// session. The session parameter tells the bundle which channel to connect.
func EditorURL(port int, dark bool, instanceID string) string {
	var b strings.Builder
	b.WriteString(Origin(port))
	b.WriteString("/?")
	b.WriteString(embedQuery)
	if dark {
		b.WriteString("&ui=dark&dark=1")
	} else {
		b.WriteString("&ui=atlas")
	}
	if instanceID != "" {
		b.WriteString("&session=")
		b.WriteString(url.QueryEscape(instanceID))
	}
	return b.String()
}

// SessionChannelPath returns the channel path for instanceID.
func SessionChannelPath(instanceID string) string {
	return InternalPrefix + "/session/" + url.PathEscape(instanceID)
}
