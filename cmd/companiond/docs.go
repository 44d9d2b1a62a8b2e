package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// `swag init -g cmd/companiond/docs.go -o internal/httpapi/docs`.
//
// @title           companiond API
// @version         1.0
// @description     HTTP API for an on-device LLM companion: model selection, streaming chat, cancellation and budget reporting.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
