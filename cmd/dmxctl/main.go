package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

func main() {
	cmd, a := newRootCmd(viper.New())
	if err := a.execute(context.Background(), cmd); err != nil {
		if !errors.Is(err, errNotConfirmed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
