// Package docs provides generated OpenAPI documentation.
//
// Sheetbuilder API
//
//	@title			Sheetbuilder API
//	@version		1.0
//	@description	PDF sheet composition API: pack document pages onto fixed-width print sheets, with job progress streaming and idempotent submissions.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/sheetbuilder/sheetbuilder
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/sheetbuilder/serve.go -o ./swagger --parseDependency --parseInternal
