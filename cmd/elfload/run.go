package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	elfcontext "github.com/grafana/elfload/pkg/context"
	"github.com/grafana/elfload/pkg/elf"
	"github.com/grafana/elfload/pkg/loader"
)

type runParams struct {
	loader          loader.Config
	pause           bool
	metricsTextfile string
	stdin           io.Reader
}

func run(ctx context.Context, path string, params runParams) error {
	logger := elfcontext.Logger(ctx)
	reg := elfcontext.Registry(ctx)

	f, err := elf.Open(path)
	if err != nil {
		return err
	}
	level.Debug(logger).Log("msg", "decoded file", "path", path, "type", f.Type, "segments", len(f.Progs), "entry", f.Entry)

	l, err := loader.New(params.loader, logger, reg)
	if err != nil {
		return err
	}
	img, err := l.Load(f)
	if err != nil {
		return err
	}
	defer img.Close()

	if params.metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(params.metricsTextfile, reg); err != nil {
			return errors.Wrapf(err, "writing metrics to %s", params.metricsTextfile)
		}
	}

	if params.pause {
		fmt.Fprint(elfcontext.Output(ctx), "Press Enter to jmp...")
		if _, err := bufio.NewReader(params.stdin).ReadString('\n'); err != nil && err != io.EOF {
			return err
		}
	}

	code, err := img.Jump()
	if err != nil {
		return err
	}
	return &loader.ReturnedError{Code: code}
}
