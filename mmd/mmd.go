package mmd

type Vector2 struct {
	X float32
	Y float32
}

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

type Vector4 struct {
	X float32
	Y float32
	Z float32
	W float32
}

// ModelInfo holds the names and comments stored right after the header.
type ModelInfo struct {
	Name      string
	NameEn    string
	Comment   string
	CommentEn string
}

// Document is a fully decoded .pmx model.
type Document struct {
	// Header is the format config the document was decoded with.
	// PMXWriter ignores it and derives a new one from the data.
	Header *FormatConfig
	ModelInfo
	Vertexes    []*Vertex
	Faces       []*Face
	Textures    []string
	Materials   []*Material
	Bones       []*Bone
	Morphs      []*Morph
	Frames      []*Frame
	RigidBodies []*RigidBody
	Joints      []*Joint
	SoftBodies  []*SoftBody
}

func NewDocument() *Document {
	return &Document{}
}

type WeightType uint8

const (
	WeightBDEF1 WeightType = iota
	WeightBDEF2
	WeightBDEF4
	WeightSDEF
	WeightQDEF
)

var weightBoneCount = [...]int{1, 2, 4, 2, 4}

// BoneCount returns the number of bone indices stored for the weight type.
func (t WeightType) BoneCount() int {
	if int(t) >= len(weightBoneCount) {
		return 0
	}
	return weightBoneCount[t]
}

func (t WeightType) String() string {
	switch t {
	case WeightBDEF1:
		return "BDEF1"
	case WeightBDEF2:
		return "BDEF2"
	case WeightBDEF4:
		return "BDEF4"
	case WeightSDEF:
		return "SDEF"
	case WeightQDEF:
		return "QDEF"
	}
	return "unknown"
}

// SDEFParams are the spherical deform parameters that follow an SDEF weight.
type SDEFParams struct {
	C  Vector3
	R0 Vector3
	R1 Vector3
}

// Weight is the skinning record of a vertex.
// len(Bones) is always Type.BoneCount(). Weights has the same length;
// implicit weights (BDEF1, second weight of BDEF2/SDEF) are filled in on decode.
type Weight struct {
	Type    WeightType
	Bones   []int
	Weights []float32
	SDEF    *SDEFParams
}

type Vertex struct {
	Pos       Vector3
	Normal    Vector3
	UV        Vector2
	ExtUVs    []Vector4
	Weight    Weight
	EdgeScale float32
}

type Face struct {
	Verts [3]int
}

type SphereMode byte

const (
	SphereModeNone SphereMode = iota
	SphereModeMul
	SphereModeAdd
	SphereModeSubTexture
)

func (m SphereMode) valid() bool { return m <= SphereModeSubTexture }

type ToonMode byte

const (
	ToonModeSeparate ToonMode = iota
	ToonModeShared
)

func (m ToonMode) valid() bool { return m <= ToonModeShared }

type Material struct {
	Name        string
	NameEn      string
	Color       Vector4
	Specular    Vector3
	Specularity float32
	AColor      Vector3
	Flags       byte
	EdgeColor   Vector4
	EdgeScale   float32
	TextureID   int
	EnvID       int
	EnvMode     SphereMode
	ToonType    ToonMode
	// Toon is a texture index for ToonModeSeparate, or 0-9 (toon01.bmp..toon10.bmp) for ToonModeShared.
	Toon  int
	Memo  string
	Count int
}

const (
	MaterialFlagDoubleSided   uint8 = 1
	MaterialFlagGroundShadow  uint8 = 2
	MaterialFlagCastShadow    uint8 = 4
	MaterialFlagReceiveShadow uint8 = 8
	MaterialFlagEdge          uint8 = 16
	MaterialFlagVertexColor   uint8 = 32
	MaterialFlagPoint         uint8 = 64
	MaterialFlagLine          uint8 = 128
)

type Link struct {
	TargetID int
	HasLimit bool
	LimitMin Vector3
	LimitMax Vector3
}

type IK struct {
	TargetID int
	Loop     int
	LimitRad float32
	Links    []*Link
}

type Bone struct {
	Name     string
	NameEn   string
	Pos      Vector3
	ParentID int
	Layer    int
	Flags    uint16
	TailID   int
	TailPos  Vector3

	InheritParentID        int
	InheritParentInfluence float32

	FixedAxis  Vector3
	LocalAxisX Vector3
	LocalAxisZ Vector3

	ExternalParentKey int

	IK IK
}

const (
	BoneFlagTailIndex    uint16 = 1
	BoneFlagRotatable    uint16 = 2
	BoneFlagTranslatable uint16 = 4
	BoneFlagVisible      uint16 = 8
	BoneFlagEnabled      uint16 = 16
	BoneFlagEnableIK     uint16 = 32

	BoneFlagInheritLocal       uint16 = 128
	BoneFlagInheritRotation    uint16 = 256
	BoneFlagInheritTranslation uint16 = 512
	BoneFlagFixedAxis          uint16 = 1024
	BoneFlagLocalAxis          uint16 = 2048
	BoneFlagPhysicsMode        uint16 = 4096
	BoneFlagExternalParent     uint16 = 8192

	BoneFlagAll uint16 = (31 | 32 | 128 | 256 | 512 | 1024 | 2048 | 4096 | 8192)
)

type MorphType byte

const (
	MorphTypeGroup MorphType = iota
	MorphTypeVertex
	MorphTypeBone
	MorphTypeUV
	MorphTypeExtUV1
	MorphTypeExtUV2
	MorphTypeExtUV3
	MorphTypeExtUV4
	MorphTypeMaterial
	MorphTypeFlip
	MorphTypeImpulse
)

func (t MorphType) valid() bool { return t <= MorphTypeImpulse }

// type 0
type MorphGroup struct {
	Target int
	Weight float32
}

// type 1
type MorphVertex struct {
	Target int
	Offset Vector3
}

// type 2
type MorphBone struct {
	Target      int
	Translation Vector3
	Rotation    Vector4
}

// type 3-7
type MorphUV struct {
	Target int
	Value  Vector4
}

// type 8
type MorphMaterial struct {
	Target int

	Flags           byte
	Diffuse         Vector4
	Specular        Vector3
	Specularity     float32
	Ambient         Vector3
	EdgeColor       Vector4
	EdgeSize        float32
	TextureTint     Vector4
	EnvironmentTint Vector4
	ToonTint        Vector4
}

// type 10
type MorphImpulse struct {
	Target   int
	Local    bool
	Velocity Vector3
	Torque   Vector3
}

type Morph struct {
	Name      string
	NameEn    string
	PanelType byte
	MorphType MorphType

	// oneof, selected by MorphType
	Group    []*MorphGroup
	Vertex   []*MorphVertex
	Bone     []*MorphBone
	UV       []*MorphUV
	Material []*MorphMaterial
	Flip     []*MorphGroup
	Impulse  []*MorphImpulse
}

// Len returns the number of offsets for the morph's type.
func (m *Morph) Len() int {
	switch m.MorphType {
	case MorphTypeGroup:
		return len(m.Group)
	case MorphTypeVertex:
		return len(m.Vertex)
	case MorphTypeBone:
		return len(m.Bone)
	case MorphTypeUV, MorphTypeExtUV1, MorphTypeExtUV2, MorphTypeExtUV3, MorphTypeExtUV4:
		return len(m.UV)
	case MorphTypeMaterial:
		return len(m.Material)
	case MorphTypeFlip:
		return len(m.Flip)
	case MorphTypeImpulse:
		return len(m.Impulse)
	}
	return 0
}

const (
	FrameTargetBone  byte = 0
	FrameTargetMorph byte = 1
)

type FrameElement struct {
	Target byte
	Index  int
}

// Frame is a display slot.
type Frame struct {
	Name     string
	NameEn   string
	Special  bool
	Elements []*FrameElement
}

type RigidShape byte

const (
	RigidShapeSphere RigidShape = iota
	RigidShapeBox
	RigidShapeCapsule
)

func (s RigidShape) valid() bool { return s <= RigidShapeCapsule }

type RigidMode byte

const (
	RigidModeStatic RigidMode = iota
	RigidModeDynamic
	RigidModeDynamicWithBone
)

func (m RigidMode) valid() bool { return m <= RigidModeDynamicWithBone }

type RigidBody struct {
	Name           string
	NameEn         string
	BoneID         int
	Group          byte
	NoCollideMask  uint16
	Shape          RigidShape
	Size           Vector3
	Pos            Vector3
	Rot            Vector3
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32
	Mode           RigidMode
}

type JointType byte

const (
	JointTypeSpring6DOF JointType = iota
	JointType6DOF
	JointTypeP2P
	JointTypeConeTwist
	JointTypeSlider
	JointTypeHinge
)

func (t JointType) valid() bool { return t <= JointTypeHinge }

// Joint keeps the parameter block as stored. For the non-spring types
// the vectors are reinterpreted by the physics engine, not by this package.
type Joint struct {
	Name          string
	NameEn        string
	Type          JointType
	RigidA        int
	RigidB        int
	Pos           Vector3
	Rot           Vector3
	MoveLimitMin  Vector3
	MoveLimitMax  Vector3
	RotLimitMin   Vector3
	RotLimitMax   Vector3
	SpringMove    Vector3
	SpringRot     Vector3
}

type SoftBodyShape byte

const (
	SoftBodyShapeTriMesh SoftBodyShape = iota
	SoftBodyShapeRope
)

func (s SoftBodyShape) valid() bool { return s <= SoftBodyShapeRope }

type SoftBodyAnchor struct {
	RigidID  int
	VertexID int
	NearMode byte
}

// SoftBody is only present in 2.1 files.
type SoftBody struct {
	Name            string
	NameEn          string
	Shape           SoftBodyShape
	MaterialID      int
	Group           byte
	NoCollideMask   uint16
	Flags           byte
	BendingDistance int
	Clusters        int
	Mass            float32
	Margin          float32
	AeroModel       int

	// VCF, DP, DG, LF, PR, VC, DF, MT, CHR, KHR, SHR, AHR
	Config [12]float32
	// SRHR_CL, SKHR_CL, SSHR_CL, SR_SPLT_CL, SK_SPLT_CL, SS_SPLT_CL
	Cluster [6]float32
	// V_IT, P_IT, D_IT, C_IT
	Iteration [4]int32
	// LST, AST, VST
	Material [3]float32

	Anchors    []*SoftBodyAnchor
	PinVertexs []int
}
