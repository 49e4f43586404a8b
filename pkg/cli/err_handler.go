package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"go.uber.org/zap"
)

type ErrorHandler struct {
	Verbose bool
	// JSON prints every topology error as a JSON object on its own line.
	JSON          bool
	Out           io.Writer
	PostPrintHook func()
}

// PrintErr reports err, numbering each topology error it contains. It returns the number of errors printed.
func (h ErrorHandler) PrintErr(err error) int {
	n := h.printErr(err)
	if h.PostPrintHook != nil {
		h.PostPrintHook()
	}
	return n
}

func (h ErrorHandler) printErr(err error) int {
	if err == nil {
		return 0
	}
	errs := topo_errs.Collect(err)
	if len(errs) == 0 {
		zap.L().Sugar().Errorf("[err 1] %v", err)
		return 1
	}
	if h.Verbose && len(errs) > 1 {
		zap.L().Sugar().Errorf("%d errors:", len(errs))
	}
	for i, e := range errs {
		if h.JSON && h.Out != nil {
			h.printJSON(e)
			continue
		}
		code := string(e.ErrorCode())
		if h.Out != nil {
			fmt.Fprintf(h.Out, "%s %s %v\n", color.RedString("[err %d]", i+1), color.YellowString(code), e)
			continue
		}
		zap.L().Error(fmt.Sprintf("[err %d] %v", i+1, e), zap.String("code", code))
	}
	return len(errs)
}

func (h ErrorHandler) printJSON(e topo_errs.TopologyError) {
	m := e.ToJSONMap()
	m["code"] = e.ErrorCode()
	b, err := json.Marshal(m)
	if err != nil {
		fmt.Fprintln(h.Out, e.Error())
		return
	}
	fmt.Fprintln(h.Out, string(b))
}
