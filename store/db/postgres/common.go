package postgres

import (
	"fmt"
	"strings"
)

// placeholder returns the n-th positional placeholder ($n).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n positional placeholders starting at $1.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}
