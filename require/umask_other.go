//go:build !unix

package require

func setUmask(mask int) int { return mask }
