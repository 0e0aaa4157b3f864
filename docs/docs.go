// Package docs регистрирует OpenAPI-описание API, которое отдаёт /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/healthz": {
            "get": {
                "tags": [
                    "system"
                ],
                "summary": "Проверка живости",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/auth/signup": {
            "post": {
                "tags": [
                    "auth"
                ],
                "summary": "Регистрация по email и паролю",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "input",
                        "description": "данные регистрации",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/services.SignupInput"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/services.AuthResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handlers.validationErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/auth/login": {
            "post": {
                "tags": [
                    "auth"
                ],
                "summary": "Вход по email и паролю",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "input",
                        "description": "email и пароль",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/models.Credentials"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/services.AuthResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/auth/password/forgot": {
            "post": {
                "description": "Ответ одинаковый для известных и неизвестных адресов.",
                "tags": [
                    "auth"
                ],
                "summary": "Запросить письмо для сброса пароля",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/handlers.messageResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "in": "body",
                        "name": "input",
                        "description": "email",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "email": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                ]
            }
        },
        "/api/auth/password/reset": {
            "post": {
                "tags": [
                    "auth"
                ],
                "summary": "Сбросить пароль по токену из письма",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "input",
                        "description": "токен и новый пароль",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handlers.resetPasswordRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.messageResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handlers.validationErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/auth/oauth": {
            "get": {
                "tags": [
                    "auth"
                ],
                "summary": "Список включённых OAuth-провайдеров",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "providers": {
                                    "type": "array",
                                    "items": {
                                        "type": "string"
                                    }
                                }
                            }
                        }
                    }
                }
            }
        },
        "/api/auth/oauth/{provider}/begin": {
            "get": {
                "description": "Ставит cookie oauth_state и перенаправляет на провайдера.",
                "tags": [
                    "auth"
                ],
                "summary": "Начать вход через OAuth",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "google | github",
                        "name": "provider",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "json - вернуть URL вместо редиректа",
                        "name": "mode",
                        "in": "query",
                        "enum": [
                            "json"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/services.OAuthRedirect"
                        }
                    },
                    "302": {
                        "description": "Found"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/auth/oauth/{provider}/callback": {
            "get": {
                "description": "state должен совпасть с cookie oauth_state.",
                "tags": [
                    "auth"
                ],
                "summary": "Завершить вход через OAuth",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "google | github",
                        "name": "provider",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "код авторизации",
                        "name": "code",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "подписанный state",
                        "name": "state",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/services.AuthResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/users/me": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "users"
                ],
                "summary": "Профиль текущего пользователя",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.userEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            },
            "patch": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "users"
                ],
                "summary": "Обновить профиль",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "input",
                        "description": "изменяемые поля; пустая строка очищает поле",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/services.UpdateProfileInput"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.userEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handlers.validationErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/users/me/photo": {
            "put": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "users"
                ],
                "summary": "Загрузить фото профиля",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "file",
                        "description": "JPEG, PNG или WebP до 5 МБ",
                        "name": "photo",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.userEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                },
                "consumes": [
                    "multipart/form-data"
                ]
            }
        },
        "/api/users/{userID}": {
            "get": {
                "tags": [
                    "users"
                ],
                "summary": "Публичный профиль пользователя",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID пользователя",
                        "name": "userID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.userEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/listings": {
            "get": {
                "description": "Только предстоящие хакатоны; фильтры объединяются по И. С токеном отмечаются закладки.",
                "tags": [
                    "listings"
                ],
                "summary": "Лента активных объявлений",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "подстрока (без учёта регистра) в названии, описании или локации; пробелы значимы",
                        "name": "q",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "теги через запятую (хотя бы один должен совпасть)",
                        "name": "tags",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "режим локации",
                        "name": "location",
                        "in": "query",
                        "enum": [
                            "all",
                            "online",
                            "offline"
                        ]
                    },
                    {
                        "type": "string",
                        "description": "окно дат",
                        "name": "date",
                        "in": "query",
                        "enum": [
                            "all",
                            "week",
                            "month",
                            "quarter"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.listingsEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "listings"
                ],
                "summary": "Создать объявление",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "input",
                        "description": "объявление",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/services.CreateListingInput"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/handlers.listingEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handlers.validationErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/listings/mine": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "listings"
                ],
                "summary": "Мои объявления, включая неактивные",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.myListingsEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/listings/{listingID}": {
            "get": {
                "tags": [
                    "listings"
                ],
                "summary": "Объявление по ID",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.listingEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            },
            "patch": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "listings"
                ],
                "summary": "Изменить объявление (только автор)",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "input",
                        "description": "изменяемые поля",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/services.UpdateListingInput"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.listingEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handlers.validationErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "listings"
                ],
                "summary": "Удалить объявление (только автор)",
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "boolean",
                        "description": "удаление требует confirm=true",
                        "name": "confirm",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/listings/{listingID}/active": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "listings"
                ],
                "summary": "Переключить приём заявок (только автор)",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.listingEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/listings/{listingID}/applications": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "applications"
                ],
                "summary": "Подать заявку в команду",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "input",
                        "description": "заявка",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/services.SubmitApplicationInput"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/handlers.applicationEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/handlers.validationErrorResponse"
                        }
                    }
                }
            }
        },
        "/api/applications/received": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "applications"
                ],
                "summary": "Заявки на мои объявления",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.applicationsEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/applications/mine": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "applications"
                ],
                "summary": "Мои заявки",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.applicationsEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/applications/{applicationID}/respond": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "applications"
                ],
                "summary": "Принять или отклонить заявку",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID заявки",
                        "name": "applicationID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "input",
                        "description": "решение",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "status": {
                                    "type": "string",
                                    "enum": [
                                        "accepted",
                                        "rejected"
                                    ]
                                }
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.applicationEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/bookmarks": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "bookmarks"
                ],
                "summary": "Закладки и объявления в них",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.bookmarksEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/bookmarks/{listingID}": {
            "put": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "bookmarks"
                ],
                "summary": "Добавить в закладки (идемпотентно)",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.bookmarkStatus"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            },
            "delete": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "bookmarks"
                ],
                "summary": "Убрать из закладок (идемпотентно)",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.bookmarkStatus"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/api/bookmarks/{listingID}/toggle": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "bookmarks"
                ],
                "summary": "Переключить закладку",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID объявления",
                        "name": "listingID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.bookmarkStatus"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/ws/listings": {
            "get": {
                "description": "Сервер шлёт {\"type\":\"listings\",\"payload\":{\"listings\":[...],\"filters\":{...}}} на каждое изменение; клиент меняет фильтры сообщением {\"type\":\"filters\",\"payload\":{...}}. Ошибки приходят как {\"type\":\"error\"}.",
                "tags": [
                    "live"
                ],
                "summary": "WebSocket: живая лента объявлений",
                "parameters": [
                    {
                        "type": "string",
                        "description": "подстрока (без учёта регистра) в названии, описании или локации; пробелы значимы",
                        "name": "q",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "теги через запятую (хотя бы один должен совпасть)",
                        "name": "tags",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "режим локации",
                        "name": "location",
                        "in": "query",
                        "enum": [
                            "all",
                            "online",
                            "offline"
                        ]
                    },
                    {
                        "type": "string",
                        "description": "окно дат",
                        "name": "date",
                        "in": "query",
                        "enum": [
                            "all",
                            "week",
                            "month",
                            "quarter"
                        ]
                    },
                    {
                        "type": "string",
                        "description": "JWT для отметок закладок (только /ws)",
                        "name": "token",
                        "in": "query"
                    }
                ],
                "responses": {
                    "101": {
                        "description": "Switching Protocols"
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/ws/bookmarks": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "live"
                ],
                "summary": "WebSocket: живой список ID закладок",
                "parameters": [
                    {
                        "type": "string",
                        "description": "JWT, если нельзя передать заголовок",
                        "name": "token",
                        "in": "query"
                    }
                ],
                "responses": {
                    "101": {
                        "description": "Switching Protocols"
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        },
        "/ws/applications": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "live"
                ],
                "summary": "WebSocket: живой список заявок на мои объявления",
                "parameters": [
                    {
                        "type": "string",
                        "description": "JWT, если нельзя передать заголовок",
                        "name": "token",
                        "in": "query"
                    }
                ],
                "responses": {
                    "101": {
                        "description": "Switching Protocols"
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/handlers.errorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "handlers.errorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                }
            }
        },
        "handlers.validationErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "handlers.resetPasswordRequest": {
            "type": "object",
            "properties": {
                "token": {
                    "type": "string"
                },
                "new_password": {
                    "type": "string",
                    "minLength": 6,
                    "maxLength": 72
                }
            }
        },
        "handlers.userEnvelope": {
            "type": "object",
            "properties": {
                "user": {
                    "$ref": "#/definitions/models.User"
                }
            }
        },
        "handlers.listingEnvelope": {
            "type": "object",
            "properties": {
                "listing": {
                    "$ref": "#/definitions/handlers.listingView"
                }
            }
        },
        "handlers.listingsEnvelope": {
            "type": "object",
            "properties": {
                "listings": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/handlers.listingView"
                    }
                },
                "filters": {
                    "$ref": "#/definitions/filters.Config"
                }
            }
        },
        "handlers.applicationEnvelope": {
            "type": "object",
            "properties": {
                "application": {
                    "$ref": "#/definitions/models.Application"
                }
            }
        },
        "handlers.applicationsEnvelope": {
            "type": "object",
            "properties": {
                "applications": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.Application"
                    }
                }
            }
        },
        "handlers.messageResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                }
            }
        },
        "handlers.bookmarksEnvelope": {
            "type": "object",
            "properties": {
                "bookmarks": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.Bookmark"
                    }
                },
                "listings": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.Listing"
                    }
                }
            }
        },
        "handlers.myListingsEnvelope": {
            "type": "object",
            "properties": {
                "listings": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.Listing"
                    }
                }
            }
        },
        "models.Bookmark": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "user_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "listing_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "models.Listing": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "creator_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "creator_name": {
                    "type": "string"
                },
                "creator_email": {
                    "type": "string"
                },
                "hackathon_name": {
                    "type": "string"
                },
                "hackathon_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "location": {
                    "type": "string"
                },
                "tech_stack": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "team_size": {
                    "type": "integer"
                },
                "current_members": {
                    "type": "integer"
                },
                "description": {
                    "type": "string"
                },
                "is_active": {
                    "type": "boolean"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "updated_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "handlers.bookmarkStatus": {
            "type": "object",
            "properties": {
                "listing_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "bookmarked": {
                    "type": "boolean"
                }
            }
        },
        "handlers.listingView": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "creator_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "creator_name": {
                    "type": "string"
                },
                "creator_email": {
                    "type": "string"
                },
                "hackathon_name": {
                    "type": "string"
                },
                "hackathon_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "location": {
                    "type": "string"
                },
                "tech_stack": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "team_size": {
                    "type": "integer"
                },
                "current_members": {
                    "type": "integer"
                },
                "description": {
                    "type": "string"
                },
                "is_active": {
                    "type": "boolean"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "updated_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "spots_left": {
                    "type": "integer"
                },
                "is_bookmarked": {
                    "type": "boolean"
                }
            }
        },
        "filters.Config": {
            "type": "object",
            "properties": {
                "text": {
                    "type": "string"
                },
                "tags": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "location": {
                    "type": "string",
                    "enum": [
                        "all",
                        "online",
                        "offline"
                    ]
                },
                "date": {
                    "type": "string",
                    "enum": [
                        "all",
                        "week",
                        "month",
                        "quarter"
                    ]
                }
            }
        },
        "models.Credentials": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "display_name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "provider": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "github_username": {
                    "type": "string"
                },
                "linkedin_url": {
                    "type": "string"
                },
                "bio": {
                    "type": "string"
                },
                "skills": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "photo_url": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "models.Application": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "format": "uuid"
                },
                "listing_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "applicant_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "applicant_name": {
                    "type": "string"
                },
                "applicant_email": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "responded_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "github_url": {
                    "type": "string"
                },
                "linkedin_url": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "pending",
                        "accepted",
                        "rejected"
                    ]
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "models.Session": {
            "type": "object",
            "properties": {
                "state": {
                    "type": "string",
                    "enum": [
                        "anonymous",
                        "authenticating",
                        "authenticated",
                        "error"
                    ]
                },
                "user_id": {
                    "type": "string",
                    "format": "uuid"
                },
                "email": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                }
            }
        },
        "services.SignupInput": {
            "type": "object",
            "required": [
                "email"
            ],
            "properties": {
                "display_name": {
                    "type": "string",
                    "minLength": 2,
                    "maxLength": 100
                },
                "email": {
                    "type": "string",
                    "maxLength": 254
                },
                "password": {
                    "type": "string",
                    "minLength": 6,
                    "maxLength": 72
                }
            }
        },
        "services.AuthResult": {
            "type": "object",
            "properties": {
                "token": {
                    "type": "string"
                },
                "user": {
                    "$ref": "#/definitions/models.User"
                },
                "session": {
                    "$ref": "#/definitions/models.Session"
                }
            }
        },
        "services.OAuthRedirect": {
            "type": "object",
            "properties": {
                "url": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                },
                "session": {
                    "$ref": "#/definitions/models.Session"
                }
            }
        },
        "services.UpdateProfileInput": {
            "type": "object",
            "properties": {
                "display_name": {
                    "type": "string",
                    "minLength": 2,
                    "maxLength": 100
                },
                "github_username": {
                    "type": "string",
                    "maxLength": 39
                },
                "linkedin_url": {
                    "type": "string"
                },
                "bio": {
                    "type": "string",
                    "maxLength": 2000
                },
                "skills": {
                    "type": "array",
                    "maxItems": 30,
                    "items": {
                        "type": "string",
                        "maxLength": 50
                    }
                }
            }
        },
        "services.CreateListingInput": {
            "type": "object",
            "required": [
                "hackathon_name",
                "hackathon_date",
                "location",
                "tech_stack",
                "description"
            ],
            "properties": {
                "hackathon_name": {
                    "type": "string",
                    "maxLength": 200
                },
                "hackathon_date": {
                    "type": "string",
                    "format": "date-time",
                    "description": "должна быть в будущем"
                },
                "location": {
                    "type": "string",
                    "maxLength": 200
                },
                "tech_stack": {
                    "type": "array",
                    "minItems": 1,
                    "maxItems": 30,
                    "items": {
                        "type": "string",
                        "maxLength": 50
                    }
                },
                "team_size": {
                    "type": "integer",
                    "minimum": 2,
                    "maximum": 10
                },
                "description": {
                    "type": "string",
                    "minLength": 50,
                    "maxLength": 5000
                }
            }
        },
        "services.UpdateListingInput": {
            "type": "object",
            "properties": {
                "hackathon_name": {
                    "type": "string",
                    "minLength": 1,
                    "maxLength": 200
                },
                "hackathon_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "location": {
                    "type": "string",
                    "minLength": 1,
                    "maxLength": 200
                },
                "tech_stack": {
                    "type": "array",
                    "minItems": 1,
                    "maxItems": 30,
                    "items": {
                        "type": "string",
                        "maxLength": 50
                    }
                },
                "team_size": {
                    "type": "integer",
                    "minimum": 2,
                    "maximum": 10
                },
                "description": {
                    "type": "string",
                    "minLength": 50,
                    "maxLength": 5000
                }
            }
        },
        "services.SubmitApplicationInput": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string",
                    "minLength": 50,
                    "maxLength": 5000
                },
                "github_url": {
                    "type": "string",
                    "description": "https://github.com/<user>"
                },
                "linkedin_url": {
                    "type": "string",
                    "description": "https://linkedin.com/in/<user>"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Hackathon Partner Finder API",
	Description:      "Объявления о поиске команды на хакатоны, заявки и закладки.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
