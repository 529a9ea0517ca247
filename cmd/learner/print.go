package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/internal/validation"
)

var (
	idColor      = color.New(color.FgCyan)
	titleColor   = color.New(color.Bold)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgHiBlack)
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
)

// printRecord writes one output record as it is produced. Program output goes through unchanged.
func printRecord(rec models.OutputRecord) {
	switch rec.Kind {
	case models.OutputStdout:
		fmt.Print(rec.Content)
	case models.OutputError:
		errorColor.Println(strings.TrimRight(rec.Content, "\n"))
	default:
		infoColor.Println(rec.Content)
	}
}

func printLesson(l *models.Lesson) {
	titleColor.Printf("%s\n", l.Title)
	fmt.Printf("%s · %s · %s\n\n", idColor.Sprint(l.ID), l.Category, l.ValidationMode.OrDefault())
	if l.Description != "" {
		fmt.Println(l.Description)
		fmt.Println()
	}
	for _, o := range l.Objectives {
		fmt.Printf("  - %s\n", o)
	}
	if len(l.Hints) > 0 {
		fmt.Println()
		for _, h := range l.Hints {
			infoColor.Printf("  hint %d: %s\n", h.Level, h.Text)
		}
	}
	if l.InitialCode != "" {
		fmt.Println()
		fmt.Println(l.InitialCode)
	}
}

func printResult(result models.ValidationResult) {
	for _, f := range result.Feedback {
		switch f.Kind {
		case models.FeedbackSuccess:
			successColor.Println(f.Message)
		case models.FeedbackError:
			errorColor.Println(f.Message)
		case models.FeedbackWarning:
			warningColor.Println(f.Message)
		default:
			infoColor.Println(f.Message)
		}
	}

	verdict := errorColor.Sprint(validation.ToastFor(result).Message)
	if result.IsCorrect {
		verdict = successColor.Sprint("OK")
	}
	fmt.Printf("\nscore %.1f/100  %s\n", result.Score, verdict)
}
