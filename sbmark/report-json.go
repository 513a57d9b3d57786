package sbmark

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func ToJson(report Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

func FromJsonByteArray(jsonData []byte) (Report, error) {
	var r Report
	err := json.Unmarshal(jsonData, &r)
	return r, err
}
