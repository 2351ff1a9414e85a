package main

import (
	"github.com/joho/godotenv"

	"github.com/autama/autama/backend/cmd/tools/autamactl/cmd"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
