package directory

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// researchers
	r.POST("/researchers", h.kindCreate(KindResearcher))
	r.GET("/researchers", h.kindList(KindResearcher))
	r.GET("/researchers/:code", h.kindGet(KindResearcher))
	r.PUT("/researchers/:code", h.kindUpdate(KindResearcher))
	r.DELETE("/researchers/:code", h.kindDelete(KindResearcher))

	// doctoral students
	r.POST("/doctoral-students", h.kindCreate(KindDoctoralStudent))
	r.GET("/doctoral-students", h.kindList(KindDoctoralStudent))
	r.GET("/doctoral-students/:code", h.kindGet(KindDoctoralStudent))
	r.PUT("/doctoral-students/:code", h.kindUpdate(KindDoctoralStudent))
	r.DELETE("/doctoral-students/:code", h.kindDelete(KindDoctoralStudent))
}

func (h *Handler) kindCreate(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePersonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrInvalid("invalid json or missing required fields"))
			return
		}
		res, err := h.svc.Create(c.Request.Context(), kind, req)
		if err != nil {
			c.JSON(toHTTPStatus(err), err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

func (h *Handler) kindGet(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.svc.Get(c.Request.Context(), kind, c.Param("code"))
		if err != nil {
			c.JSON(toHTTPStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *Handler) kindUpdate(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdatePersonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrInvalid("invalid json"))
			return
		}
		res, err := h.svc.Update(c.Request.Context(), kind, c.Param("code"), req)
		if err != nil {
			c.JSON(toHTTPStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *Handler) kindDelete(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.Delete(c.Request.Context(), kind, c.Param("code")); err != nil {
			c.JSON(toHTTPStatus(err), err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) kindList(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Page{
			Limit:  atoiDef(c.Query("limit"), 50),
			Offset: atoiDef(c.Query("offset"), 0),
			Order:  c.DefaultQuery("order", "asc"),
		}
		items, total, err := h.svc.List(c.Request.Context(), kind, c.Query("search"), p)
		if err != nil {
			c.JSON(toHTTPStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
	}
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
