// Command querykey prints canonical hashes of JSON query keys and checks
// partial matches between them.
//
//	querykey hash '["todos",{"page":1}]'
//	querykey match '["todos",{"page":1,"done":false}]' '["todos",{"page":1}]'
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, logrus.StandardLogger()).Execute(); err != nil {
		os.Exit(1)
	}
}
