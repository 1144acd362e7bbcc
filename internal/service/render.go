// internal/service/render.go
package service

import (
	"strings"

	"github.com/unclebandit/reachline-backend/internal/model"
)

// RenderBlocks personalizes text blocks for one contact. Placeholders are
// {name}, {handle}, and any {custom_field_key} the contact carries.
func RenderBlocks(blocks []model.ContentBlock, contact model.Contact) []model.ContentBlock {
	data := map[string]string{
		"name":   contact.Name,
		"handle": contact.Handle,
	}
	for k, v := range contact.CustomFields {
		data[k] = v
	}

	out := make([]model.ContentBlock, len(blocks))
	for i, block := range blocks {
		out[i] = block
		if block.Type == "text" {
			out[i].Text = RenderTemplate(block.Text, data)
		}
	}
	return out
}

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}
