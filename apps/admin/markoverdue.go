package main

import (
	"context"
	"fmt"
	"time"
)

func (cli *commandLine) markOverdue() error {
	n, err := cli.financeSvc.MarkOverdue(context.Background(), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("%d payments marked as overdue\n", n)
	return nil
}
