package accelerator

import (
	"go.uber.org/zap"
)

// fractionBits 定点数小数位宽（8 位小数，对应缩放因子 256）
const fractionBits = 8

// FPGA 模拟 AXI-Stream 定点乘法核的加速器适配器
// 真实系统中这里通过 PYNQ/XRT 下发到硬件；契约相同：
// 权重与输入各按 256 缩放截断为整数，整数相乘后除以 256*256
// 注意：截断量化对非 2 的幂输入会产生可观测的精度损失，
// 不能用普通浮点乘法代替
type FPGA struct {
	logger *zap.Logger
}

// NewFPGA 创建加速器适配器
func NewFPGA(logger *zap.Logger) *FPGA {
	return &FPGA{logger: logger}
}

// Compute 执行定点乘法：result = weight * input
// 纯函数，无副作用，不会失败
func (f *FPGA) Compute(weight, input float64) float64 {
	scale := float64(int64(1) << fractionBits) // 256

	// 定点量化（截断）
	wFixed := int64(weight * scale)
	iFixed := int64(input * scale)

	// 模拟 Verilog product_reg
	product := wFixed * iFixed
	result := float64(product) / (scale * scale)

	f.logger.Debug("FPGA compute",
		zap.Float64("weight", weight),
		zap.Float64("input", input),
		zap.Int64("w_fixed", wFixed),
		zap.Int64("i_fixed", iFixed),
		zap.Float64("result", result),
	)

	return result
}
