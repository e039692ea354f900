// Package utils provides terminal output helpers shared by the CLI commands
package utils

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgBlue)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	headingColor = color.New(color.FgHiCyan, color.Bold)
	keyColor     = color.New(color.Bold)
	subtleColor  = color.New(color.FgHiBlack)
)

// PrintHeading prints a formatted heading
func PrintHeading(title string) {
	headingColor.Println(title)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println(successColor.Sprint("✓ ") + message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Println(infoColor.Sprint("ℹ ") + message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println(warnColor.Sprint("⚠ ") + message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Println(errorColor.Sprint("✗ ") + message)
}

// PrintKeyValue prints a key-value pair
func PrintKeyValue(key, value string) {
	fmt.Printf("%s: %s\n", keyColor.Sprint(key), value)
}

// PrintSubtle prints dimmed secondary text
func PrintSubtle(message string) {
	subtleColor.Println(message)
}

// FormatTime renders a timestamp for table display, "-" when zero
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04:05")
}

// Truncate shortens a string to maxLen, appending an ellipsis
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
