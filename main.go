// ./main.go
package main

import (
	"github.com/xkilldash9x/testflow-cli/cmd"
)

func main() {
	cmd.Execute()
}
