package response

import "github.com/gin-gonic/gin"

// RespondJSON writes a success envelope.
func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, StandardApiResponse{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// RespondError writes a failure envelope. err is the stable failure
// category or user-facing error line; message carries the hint.
func RespondError(c *gin.Context, code int, err, message string) {
	c.JSON(code, StandardApiResponse{
		Success: false,
		Code:    code,
		Message: message,
		Error:   err,
	})
}
