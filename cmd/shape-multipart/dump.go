package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/shapestone/shape-multipart/pkg/multipart"
)

var (
	partColor   = color.New(color.FgGreen, color.Bold)
	headerColor = color.New(color.FgCyan)
	faintColor  = color.New(color.Faint)
)

// runDump decodes a multipart body, or a raw HTTP request carrying one, and
// prints every part with its size and BLAKE3 digest.
func runDump(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	boundary := flagSet.String("boundary", "", "body boundary (detected from the first line when empty)")
	rawHTTP := flagSet.Bool("http", false, "input is a raw HTTP/1.1 request")
	noColor := flagSet.Bool("no-color", false, "disable colored output")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if *noColor {
		color.NoColor = true
	}

	in := stdin
	switch flagSet.NArg() {
	case 0:
	case 1:
		f, err := os.Open(flagSet.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	default:
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}

	var req *multipart.Request
	if *rawHTTP {
		hr, err := multipart.ReadHTTPRequest(in)
		if err != nil {
			return err
		}
		headerColor.Fprintf(stdout, "%s %s %s\n", hr.Method, hr.Path, hr.Version)
		req = hr.Body
	} else {
		b := *boundary
		if b == "" {
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			if b = multipart.DetectBoundary(data); b == "" {
				return errors.New("cannot detect boundary; pass --boundary")
			}
			in = bytes.NewReader(data)
		}
		req = multipart.NewRequest(multipart.FormDataContentType(b), in)
	}
	return dumpParts(ctx, req, stdout)
}

func dumpParts(ctx context.Context, req *multipart.Request, w io.Writer) error {
	parts := req.Parts(ctx)
	defer parts.Close()
	for {
		p, err := parts.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		partColor.Fprintf(w, "part %d\n", p.Index())
		for _, h := range p.Headers() {
			fmt.Fprintf(w, "  %s %s\n", headerColor.Sprint(h.Key+":"), h.Value)
		}
		hasher := blake3.New()
		n, err := io.Copy(hasher, p)
		if err != nil {
			return fmt.Errorf("part %d: %w", p.Index(), err)
		}
		faintColor.Fprintf(w, "  %d bytes blake3:%s\n", n, hex.EncodeToString(hasher.Sum(nil)))
	}
}
