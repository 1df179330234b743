package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"planar-ar/internal/matching"
	"planar-ar/pkg/geometry"
)

// minReferenceKeypoints is the smallest descriptor set a reference image can
// have and still be trackable.
const minReferenceKeypoints = 8

// Engine owns the ORB detector and the brute-force matchers, plus the
// reference image's keypoints and descriptors computed once at startup.
// ORB is deterministic for identical input, as the pipeline requires.
type Engine struct {
	orb     gocv.ORB
	forward gocv.BFMatcher
	reverse gocv.BFMatcher

	refDesc gocv.Mat
	refPts  []geometry.Point2D

	gray gocv.Mat
}

// NewEngine detects features on the reference image and prepares the
// matchers. The reference Mat is only read; the caller keeps ownership.
func NewEngine(reference gocv.Mat) (*Engine, error) {
	if reference.Empty() {
		return nil, fmt.Errorf("reference image is empty")
	}

	e := &Engine{
		orb:     gocv.NewORB(),
		forward: gocv.NewBFMatcherWithParams(gocv.NormHamming, false),
		reverse: gocv.NewBFMatcherWithParams(gocv.NormHamming, false),
		gray:    gocv.NewMat(),
	}

	refGray := gocv.NewMat()
	defer refGray.Close()
	toGray(reference, &refGray)

	mask := gocv.NewMat()
	defer mask.Close()
	kps, desc := e.orb.DetectAndCompute(refGray, mask)
	if len(kps) < minReferenceKeypoints {
		desc.Close()
		e.orb.Close()
		e.forward.Close()
		e.reverse.Close()
		e.gray.Close()
		return nil, fmt.Errorf("reference image has %d keypoints, need %d; use a more textured image",
			len(kps), minReferenceKeypoints)
	}
	e.refDesc = desc
	e.refPts = keypointPositions(kps)
	return e, nil
}

// Match detects features on the scaled frame and runs the k=2 nearest
// neighbor search in both directions. The returned candidates are valid
// until the next call.
func (e *Engine) Match(frame gocv.Mat) (matching.Candidates, error) {
	if frame.Empty() {
		return matching.Candidates{}, fmt.Errorf("empty frame")
	}
	toGray(frame, &e.gray)

	mask := gocv.NewMat()
	defer mask.Close()
	kps, desc := e.orb.DetectAndCompute(e.gray, mask)
	defer desc.Close()
	if len(kps) == 0 || desc.Empty() {
		// Featureless frame: nothing to match, quality will read zero.
		return matching.Candidates{RefPoints: e.refPts}, nil
	}

	fwd := e.forward.KnnMatch(desc, e.refDesc, 2)
	rev := e.reverse.KnnMatch(e.refDesc, desc, 2)

	return matching.Candidates{
		FramePoints: keypointPositions(kps),
		RefPoints:   e.refPts,
		Forward:     neighbors(fwd, len(kps)),
		Reverse:     neighbors(rev, len(e.refPts)),
	}, nil
}

// Close releases the detector, matchers and reference descriptors.
func (e *Engine) Close() error {
	e.orb.Close()
	e.forward.Close()
	e.reverse.Close()
	e.gray.Close()
	return e.refDesc.Close()
}

// toGray converts a BGR or grayscale Mat into dst as single-channel gray.
func toGray(src gocv.Mat, dst *gocv.Mat) {
	if src.Channels() == 1 {
		src.CopyTo(dst)
		return
	}
	gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
}

func keypointPositions(kps []gocv.KeyPoint) []geometry.Point2D {
	pts := make([]geometry.Point2D, len(kps))
	for i, kp := range kps {
		pts[i] = geometry.NewPoint2D(kp.X, kp.Y)
	}
	return pts
}

// neighbors converts gocv knn output into the filter's neighbor lists,
// indexed by query keypoint. gocv returns one list per query in order, but
// lists can be short near the end of small descriptor sets.
func neighbors(knn [][]gocv.DMatch, queries int) [][]matching.Neighbor {
	out := make([][]matching.Neighbor, queries)
	for qi, ms := range knn {
		if qi >= queries {
			break
		}
		ns := make([]matching.Neighbor, 0, len(ms))
		for _, m := range ms {
			ns = append(ns, matching.Neighbor{Index: m.TrainIdx, Distance: m.Distance})
		}
		out[qi] = ns
	}
	return out
}
