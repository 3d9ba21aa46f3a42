package service

import (
	"net/url"
	"path"
)

// nameFromLocation returns the last path element of a location, used as
// the format hint when a remote request names no file.
func nameFromLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
