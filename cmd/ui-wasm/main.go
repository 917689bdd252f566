//go:build js && wasm

package main

import "github.com/Its-donkey/storefront/internal/ui/wasm"

func main() {
	wasm.RunApp()
}
