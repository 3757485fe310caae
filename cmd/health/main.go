package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jschaub30/aws-demos/internal/handlers"
)

func main() {
	lambda.Start(handlers.Health)
}
