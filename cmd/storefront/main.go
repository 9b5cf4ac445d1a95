package main

import "github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cli"

func main() {
	cli.Execute()
}
