package loans

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// POST /loans (reserve)
	r.POST("/loans", h.Reserve)
	// POST /loans/close (set return date)
	r.POST("/loans/close", h.Close)
	// POST /loans/reopen (clear return date)
	r.POST("/loans/reopen", h.Reopen)
	// DELETE /loans?equipment_code=&holder_kind=&holder_code=
	r.DELETE("/loans", h.Delete)

	// GET /loans (history, filters + paging)
	r.GET("/loans", h.List)
	// GET /loans/:loan_ulid
	r.GET("/loans/:loan_ulid", h.GetByULID)
	// GET /equipments/:equipment_code/open-loans
	r.GET("/equipments/:equipment_code/open-loans", h.ListOpenFor)
}

func (h *Handler) Reserve(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Reserve(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/loans/"+res.LoanULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Close(c *gin.Context) {
	var req CloseLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Close(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Reopen(c *gin.Context) {
	var req ReopenLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Reopen(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(),
		c.Query("equipment_code"), c.Query("holder_kind"), c.Query("holder_code"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetByULID(c *gin.Context) {
	res, err := h.svc.GetByULID(c.Request.Context(), c.Param("loan_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListOpenFor(c *gin.Context) {
	res, err := h.svc.ListOpenFor(c.Request.Context(), c.Param("equipment_code"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	f := LoanFilter{}
	if v := c.Query("equipment_code"); v != "" {
		f.EquipmentCode = &v
	}
	if v := c.Query("holder_code"); v != "" {
		f.HolderCode = &v
	}
	if v := c.Query("holder_kind"); v != "" {
		kind, err := parseHolderKind(v)
		if err != nil {
			c.JSON(toHTTPStatus(err), errorFromErr(err))
			return
		}
		f.HolderKind = &kind
	}
	if v := c.Query("open"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Open = &b
		}
	}
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  c.DefaultQuery("order", "desc"),
	}
	items, total, err := h.svc.ListHistory(c.Request.Context(), f, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error APIError `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	return errorDTO{Error: APIError{Code: code, Message: msg}}
}

func errorFromErr(err error) errorDTO {
	if api, ok := err.(*APIError); ok {
		return errorDTO{Error: *api}
	}
	log.Printf("[ERROR] loans: %v", err)
	return errorBody(CodeInternal, "internal error")
}
