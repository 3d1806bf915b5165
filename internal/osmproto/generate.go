// Package osmproto holds the OSM PBF file format messages.
package osmproto

//go:generate protoc --proto_path=../.. --go_out=../.. --go_opt=paths=source_relative internal/osmproto/fileformat.proto internal/osmproto/osmformat.proto
