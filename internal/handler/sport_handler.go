package handler

import (
	"net/http"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// SportResponse is one entry of the sports catalog.
type SportResponse struct {
	ID   uint   `json:"id" example:"1"`
	Name string `json:"name" example:"Running"`
	Icon string `json:"icon" example:"🏃"`
}

func newSportResponse(sport models.Sport) SportResponse {
	return SportResponse{ID: sport.ID, Name: sport.Name, Icon: sport.Icon}
}

// endregion

// GetSports godoc
// @Summary      List sports
// @Description  Gets the sports catalog events can be tagged with, alphabetically.
// @Tags         sports
// @Produce      json
// @Param        q query string false "Search by name"
// @Success      200 {array} SportResponse
// @Failure      500 {object} ErrorResponse
// @Router       /sports [get]
func (h *Handler) GetSports(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Model(&models.Sport{})
	if q := c.Query("q"); q != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+q+"%")
	}

	var sports []models.Sport
	if err := query.Order("name ASC").Find(&sports).Error; err != nil {
		respondError(c, apperror.Internal(err))
		return
	}

	response := make([]SportResponse, 0, len(sports))
	for _, sport := range sports {
		response = append(response, newSportResponse(sport))
	}
	c.JSON(http.StatusOK, response)
}
