package placement

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// FitPlan is a scale-then-center-crop transform that fills a target
// rectangle without distortion.
type FitPlan struct {
	ResizeWidth  int
	ResizeHeight int
	CropX        int
	CropY        int
	TargetWidth  int
	TargetHeight int
}

// NeedsCrop reports whether the resized artwork exceeds the target.
func (p FitPlan) NeedsCrop() bool {
	return p.ResizeWidth > p.TargetWidth || p.ResizeHeight > p.TargetHeight
}

// CropRect is the crop box in resized-artwork coordinates. Its size is
// always exactly the target size.
func (p FitPlan) CropRect() image.Rectangle {
	return image.Rect(p.CropX, p.CropY, p.CropX+p.TargetWidth, p.CropY+p.TargetHeight)
}

// PlanFit computes the resize size and crop offset that make an aw×ah
// artwork fill a tw×th target. Ratios are compared by cross-multiplication
// so equal aspect ratios are detected exactly.
func PlanFit(aw, ah, tw, th int) (FitPlan, error) {
	if aw <= 0 || ah <= 0 {
		return FitPlan{}, fmt.Errorf("invalid artwork size %dx%d", aw, ah)
	}
	if tw <= 0 || th <= 0 {
		return FitPlan{}, fmt.Errorf("invalid target size %dx%d", tw, th)
	}

	plan := FitPlan{TargetWidth: tw, TargetHeight: th}
	if int64(aw)*int64(th) > int64(tw)*int64(ah) {
		// artwork relatively wider: fit height, crop width
		plan.ResizeHeight = th
		plan.ResizeWidth = int(int64(th) * int64(aw) / int64(ah))
		plan.CropX = (plan.ResizeWidth - tw) / 2
	} else {
		// artwork relatively taller or equal: fit width, crop height
		plan.ResizeWidth = tw
		plan.ResizeHeight = int(int64(tw) * int64(ah) / int64(aw))
		plan.CropY = (plan.ResizeHeight - th) / 2
	}
	return plan, nil
}

// FitAndCrop resizes img with a Lanczos filter and center-crops it to tw×th.
func FitAndCrop(img image.Image, tw, th int) (*image.NRGBA, FitPlan, error) {
	b := img.Bounds()
	plan, err := PlanFit(b.Dx(), b.Dy(), tw, th)
	if err != nil {
		return nil, FitPlan{}, err
	}

	resized := imaging.Resize(img, plan.ResizeWidth, plan.ResizeHeight, imaging.Lanczos)
	if plan.NeedsCrop() {
		resized = imaging.Crop(resized, plan.CropRect())
	}
	return resized, plan, nil
}
