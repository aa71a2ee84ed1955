package cmd

import "github.com/fatih/color"

var (
	boldStyle    = color.New(color.Bold).SprintFunc()
	dimStyle     = color.New(color.Faint).SprintFunc()
	okStyle      = color.New(color.FgGreen).SprintFunc()
	warnStyle    = color.New(color.FgYellow).SprintFunc()
	errorStyle   = color.New(color.Bold, color.FgRed).SprintFunc()
	nodeStyle    = color.New(color.Bold, color.FgCyan).SprintFunc()
	summaryStyle = color.New(color.Bold, color.FgMagenta).SprintFunc()
)
