// Package httputil holds the JSON response helpers shared by the API
// handlers, so every endpoint answers with the same envelope shapes.
package httputil
