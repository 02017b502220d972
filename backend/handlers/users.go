package handlers

import (
	"net/http"
	"strings"

	"georetail/backend/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// GetUsers lists the accounts allowed to administer datasets
func (h *Handler) GetUsers(c *fiber.Ctx) error {
	var users []models.Admin
	if result := h.DB.Find(&users); result.Error != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": result.Error.Error()})
	}
	return c.JSON(users)
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || len(input.Password) < 8 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Username and a password of at least 8 characters are required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not hash password"})
	}
	user := models.Admin{Username: input.Username, Password: string(hashed)}
	if result := h.DB.Create(&user); result.Error != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": result.Error.Error()})
	}
	AddEvent("info", "User created: "+user.Username)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "User created", "user": user.Username})
}

// DeleteUser removes an account, refusing to delete the last one
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	var count int64
	h.DB.Model(&models.Admin{}).Count(&count)
	if count <= 1 {
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "Cannot delete the last user"})
	}

	result := h.DB.Delete(&models.Admin{}, "id = ?", c.Params("id"))
	if result.Error != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": result.Error.Error()})
	}
	if result.RowsAffected == 0 {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}
