// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls that are not the Riot API.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
