package utils

import (
	"encoding/json"
	"fmt"
)

// Unmarshal JSON to generic struct
func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}

func MarshalToPrint[T any](input T) {
	jsonData, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		fmt.Println("marshal error:", err)
		return
	}
	fmt.Println(string(jsonData))
}
