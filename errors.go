/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fatih/color"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// errorf always prints, in red when the output is a terminal.
func errorf(format string, args ...any) {
	fmt.Println(color.RedString("%s | ERROR: "+format, append([]any{time.Now().Format(logDate)}, args...)...))
}

// drainErrors reports handler write errors until errs is closed.
func drainErrors(errs <-chan error) {
	for err := range errs {
		errorf("%v", err)
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body{font-family:sans-serif;margin:0;padding:1em;}table{border-collapse:collapse;}td,th{padding:0.25em 0.75em;text-align:left;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body>%s</body></html>", body))

	return htmlBody.String()
}
