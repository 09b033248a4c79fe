package server

import (
	"fmt"
	"log"
)

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	yellow     = "\033[33m"
	red        = "\033[31m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":     green,
	"POST":    blue,
	"OPTIONS": cyan,
	"DELETE":  yellow,
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + resetColor
	}
	return gray + paddedMethod + resetColor
}

// logRoute prints a coloured route line for the DEV route listing.
func logRoute(method, path string) {
	log.Printf("[%-19s] %s\n", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Printf("[%-19s] %s %s\n", colourMethod(method), path, red+error+resetColor)
}
