package main

import "github.com/vietddude/txsync/internal/cli"

func main() {
	cli.Execute()
}
