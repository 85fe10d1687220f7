package main

import (
	"fmt"
	"strings"
)

// parseResourceID splits a "provider/resource" ID. Everything after
// the first slash belongs to the resource type.
func parseResourceID(id string) (provider, resource string, err error) {
	provider, resource, ok := strings.Cut(id, "/")
	if !ok {
		return "", "", fmt.Errorf("invalid resource ID format %q (expected provider/resource)", id)
	}
	return provider, resource, nil
}
