package sge

import (
	"testing"

	"github.com/hpctools/gridtrack/execer/execers"
)

func TestParseSubmitResponse(t *testing.T) {
	id, err := ParseSubmitResponse(`Your job 12345 ("x") has been submitted`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 12345 {
		t.Fatalf("id: %v", id)
	}
}

func TestParseSubmitResponseBad(t *testing.T) {
	for _, out := range []string{
		"",
		"Your job",
		`Your job nan ("x") has been submitted`,
	} {
		if _, err := ParseSubmitResponse(out); err == nil {
			t.Fatalf("expected ParseError for %q", out)
		} else if _, ok := err.(*ParseError); !ok {
			t.Fatalf("expected ParseError for %q, got %T", out, err)
		}
	}
}

func TestSubmit(t *testing.T) {
	fake := execers.NewFakeExecer()
	fake.Returns("qsub", execers.Result{Stdout: `Your job 777 ("sim") has been submitted` + "\n"})

	inv, err := BuildSubmit(validDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	id, err := NewSubmitClient(fake, nil).Submit(inv)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != 777 {
		t.Fatalf("id: %v", id)
	}
	if fake.Ran("qsub") != 1 {
		t.Fatalf("qsub ran %d times", fake.Ran("qsub"))
	}
	// The command is piped on stdin, not embedded in argv.
	if fake.Commands[0].Stdin != inv.Stdin {
		t.Fatalf("stdin: %q", fake.Commands[0].Stdin)
	}
}

func TestSubmitCommandFailureIsNotRetried(t *testing.T) {
	fake := execers.NewFakeExecer()
	fake.Returns("qsub", execers.Result{Stderr: "Unable to contact qmaster\n", ExitCode: 1})

	inv, _ := BuildSubmit(validDescriptor())
	if _, err := NewSubmitClient(fake, nil).Submit(inv); err == nil {
		t.Fatal("expected error for failed submission")
	}
	if fake.Ran("qsub") != 1 {
		t.Fatalf("qsub ran %d times, want exactly 1", fake.Ran("qsub"))
	}
}
