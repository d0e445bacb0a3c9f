package generated

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.5.0 --config=../../../api/oapi-codegen.yaml ../../../api/openapi.yaml
