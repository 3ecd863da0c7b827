package docs

// docs.go is generated from the handler annotations; regenerate it after changing them.
//go:generate go run github.com/swaggo/swag/cmd/swag@v1.16.6 init --dir ../cmd/api,../internal/http/handler --generalInfo main.go --output . --outputTypes go --parseInternal
