package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/schema"
)

func (h *handler) listCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *handler) getCourse(c *gin.Context) {
	tree, err := h.catalog.CourseWithContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *handler) createCourse(c *gin.Context) {
	var in schema.CourseInput
	if !bindJSON(c, &in) {
		return
	}
	course, err := h.catalog.CreateCourse(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (h *handler) deleteCourse(c *gin.Context) {
	if err := h.catalog.DeleteCourse(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listSections(c *gin.Context) {
	sections, err := h.catalog.ListSections(c.Request.Context(), c.Query("courseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sections)
}

func (h *handler) getSection(c *gin.Context) {
	section, err := h.catalog.GetSection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func (h *handler) createSection(c *gin.Context) {
	var in schema.SectionInput
	if !bindJSON(c, &in) {
		return
	}
	section, err := h.catalog.CreateSection(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, section)
}

func (h *handler) deleteSection(c *gin.Context) {
	if err := h.catalog.DeleteSection(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listAssets(c *gin.Context) {
	assets, err := h.catalog.ListAssets(c.Request.Context(), c.Query("sectionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *handler) getAsset(c *gin.Context) {
	asset, err := h.catalog.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *handler) createAsset(c *gin.Context) {
	var in schema.AssetInput
	if !bindJSON(c, &in) {
		return
	}
	asset, err := h.catalog.CreateAsset(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *handler) deleteAsset(c *gin.Context) {
	if err := h.catalog.DeleteAsset(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindJSON only decodes. Field rules are checked by the schema package.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "body", "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
