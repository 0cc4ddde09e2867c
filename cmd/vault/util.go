package main

import (
	"encoding/json"
	"fmt"
	"os"
)

var colorRed = "\033[31m"

// printJSON pretty-prints v to stdout, mirroring the CLI's one output
// convention for every read command.
func printJSON(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}

func printErr(err error) {
	fmt.Fprintln(os.Stderr, colorRed+err.Error())
}
