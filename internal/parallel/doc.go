// Package parallel provides the worker pool used to compile shader
// specializations off the submission thread.
package parallel
