package parser_test

import (
	"fmt"

	"github.com/sansecio/sigmatch/parser"
)

func ExampleParseHex() {
	sig, err := parser.ParseHex("4d5a??(90|cc)[1-4]00{8-}5045")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("Parsed %d token(s)\n", len(sig.Tokens))
	// Output:
	// Parsed 9 token(s)
}

func ExampleParseOffset() {
	d, err := parser.ParseOffset("EOF-512,16")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(d.Type, d.Value, d.MaxShift)
	// Output:
	// EOF- 512 16
}
