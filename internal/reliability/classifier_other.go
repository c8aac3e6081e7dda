//go:build !unix

package reliability

// Without unix errnos the message checks in ClassifyStorageError apply.
func classifyErrno(error) (string, bool) { return "", false }
