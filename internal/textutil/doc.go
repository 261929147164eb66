// Package textutil turns arbitrary strings into filesystem-safe tokens.
package textutil
