package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bus-router/internal/planner"
	"bus-router/internal/render"
	"bus-router/internal/transit"
)

type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewScanner(in), out: out}
}

// prompt writes label and returns the next input line, or io.EOF.
func (c *console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *console) readDeparture() (transit.Departure, error) {
	var dep transit.Departure
	from, err := c.prompt("Initial Stop = ")
	if err != nil {
		return dep, err
	}
	to, err := c.prompt("Final Stop = ")
	if err != nil {
		return dep, err
	}
	at, err := c.prompt("Start Time = ")
	if err != nil {
		return dep, err
	}
	return parseDeparture(from, to, at)
}

func parseDeparture(from, to, at string) (transit.Departure, error) {
	var dep transit.Departure
	var err error
	if dep.From, err = strconv.Atoi(strings.TrimSpace(from)); err != nil {
		return dep, fmt.Errorf("invalid initial stop %q", from)
	}
	if dep.To, err = strconv.Atoi(strings.TrimSpace(to)); err != nil {
		return dep, fmt.Errorf("invalid final stop %q", to)
	}
	if dep.At, err = transit.ParseClock(at); err != nil {
		return dep, err
	}
	return dep, nil
}

// interactive answers departures read from the console until EOF.
func (c *console) interactive(ctx context.Context, p *planner.Planner) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		dep, err := c.readDeparture()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "%v\n\n", err)
			continue
		}
		if err := answer(ctx, c.out, p, dep); err != nil {
			fmt.Fprintf(c.out, "%v\n\n", err)
		}
	}
}

func answer(ctx context.Context, out io.Writer, p *planner.Planner, dep transit.Departure) error {
	plan, err := p.Plan(ctx, dep)
	if err != nil {
		return err
	}
	return printPlan(out, plan)
}

func printPlan(out io.Writer, plan *planner.Plan) error {
	var b strings.Builder
	b.WriteString("\nThe Fastest Path:\n")
	b.WriteString(render.String(plan.Fastest))
	b.WriteString("\nThe Cheapest Path:\n")
	b.WriteString(render.String(plan.Cheapest))
	b.WriteString("\n")
	_, err := io.WriteString(out, b.String())
	return err
}
