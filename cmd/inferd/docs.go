package main

// General API documentation for swaggo. Regenerate docs with swag init.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for local model management and text generation.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
