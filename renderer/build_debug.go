//go:build debug

package renderer

const debugBuild = true
