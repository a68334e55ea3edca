package utils

import "io"

// DrainAndClose discards what is left of an RPC response body and closes it,
// so the endpoint's keep-alive connection goes back to the pool.
func DrainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, rc)
	return rc.Close()
}
