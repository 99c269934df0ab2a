package schema

// NENA feature type names.
const (
	TypeAddressPoints        = "ADDRESS_POINTS"
	TypeRoadCenterline       = "ROAD_CENTERLINE"
	TypePSAP                 = "PSAP"
	TypeESB                  = "ESB"
	TypeESBEMS               = "ESB_EMS"
	TypeESBFire              = "ESB_FIRE"
	TypeESBLaw               = "ESB_LAW"
	TypeProvisioningBoundary = "PROVISIONING_BOUNDARY"
)

// Control table layers.
const (
	LayerNENAIDs            = "NENA_IDs"
	LayerAddressFlags       = "AddressFlags"
	LayerValidatedAddresses = "ValidatedAddresses"
)

// Shared street name components, present on both address points and road
// centerlines under the same names.
const (
	FldStPreMod  = "St_PreMod"
	FldStPreDir  = "St_PreDir"
	FldStPreTyp  = "St_PreTyp"
	FldStPreSep  = "St_PreSep"
	FldStName    = "St_Name"
	FldStPosTyp  = "St_PosTyp"
	FldStPosDir  = "St_PosDir"
	FldStPosMod  = "St_PosMod"
	FldLStPreDir = "LSt_PreDir"
	FldLStName   = "LSt_Name"
	FldLStType   = "LSt_Type"
	FldLStPosDir = "LSt_PosDir"
)

// Address point fields.
const (
	FldSiteNGUID  = "Site_NGUID"
	FldAddNumPre  = "AddNum_Pre"
	FldAddNumber  = "Add_Number"
	FldAddNumSuf  = "AddNum_Suf"
	FldESN        = "ESN"
	FldMSAGComm   = "MSAGComm"
	FldIncMuni    = "Inc_Muni"
	FldUnincComm  = "Uninc_Comm"
	FldNbrhdComm  = "Nbrhd_Comm"
	FldPostCode   = "Post_Code"
	FldPostComm   = "Post_Comm"
	FldAddCode    = "AddCode"
	FldCounty     = "County"
	FldState      = "State"
	FldCountry    = "Country"
	FldBuilding   = "Building"
	FldFloor      = "Floor"
	FldUnit       = "Unit"
	FldRoom       = "Room"
	FldSeat       = "Seat"
	FldAddtlLoc   = "Addtl_Loc"
	FldLandmkName = "LandmkName"
	FldMilePost   = "Mile_Post"
	FldPlaceType  = "Place_Type"
	FldPlacement  = "Placement"
	FldLatitude   = "Lat"
	FldLongitude  = "Long"
)

// Road centerline fields.
const (
	FldRCLNGUID = "RCL_NGUID"
)

// Side identifies which side of a centerline an address falls on.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

// String returns the NENA side suffix letter.
func (s Side) String() string {
	if s == SideRight {
		return "R"
	}
	return "L"
}

// SidePair holds the left and right variants of a side-dependent centerline
// field, resolved once at load time instead of assembled from strings at
// every access.
type SidePair struct {
	Left  string
	Right string
}

// Field returns the field name for the given side.
func (p SidePair) Field(s Side) string {
	if s == SideRight {
		return p.Right
	}
	return p.Left
}

// Side-dependent range and parity fields on the road centerline.
var (
	ParityFields       = SidePair{Left: "Parity_L", Right: "Parity_R"}
	FromAddrFields     = SidePair{Left: "FromAddr_L", Right: "FromAddr_R"}
	ToAddrFields       = SidePair{Left: "ToAddr_L", Right: "ToAddr_R"}
	AddNumPrefixFields = SidePair{Left: "AdNumPre_L", Right: "AdNumPre_R"}
)

// SideMapping pairs an address point field with the centerline side fields it
// inherits from.
type SideMapping struct {
	PointField string
	LineFields SidePair
}

// InheritedFields lists every address attribute inherited from the resolved
// side of the centerline.
var InheritedFields = []SideMapping{
	{PointField: FldMSAGComm, LineFields: SidePair{Left: "MSAGComm_L", Right: "MSAGComm_R"}},
	{PointField: FldIncMuni, LineFields: SidePair{Left: "IncMuni_L", Right: "IncMuni_R"}},
	{PointField: FldUnincComm, LineFields: SidePair{Left: "UnincCom_L", Right: "UnincCom_R"}},
	{PointField: FldESN, LineFields: SidePair{Left: "ESN_L", Right: "ESN_R"}},
	{PointField: FldNbrhdComm, LineFields: SidePair{Left: "NbrhdCom_L", Right: "NbrhdCom_R"}},
	{PointField: FldPostCode, LineFields: SidePair{Left: "PostCode_L", Right: "PostCode_R"}},
	{PointField: FldPostComm, LineFields: SidePair{Left: "PostComm_L", Right: "PostComm_R"}},
	{PointField: FldAddCode, LineFields: SidePair{Left: "AddCode_L", Right: "AddCode_R"}},
	{PointField: FldCounty, LineFields: SidePair{Left: "County_L", Right: "County_R"}},
	{PointField: FldState, LineFields: SidePair{Left: "State_L", Right: "State_R"}},
}

// StreetAttributes are the street name components copied verbatim from a
// centerline onto an address point during attribute merge.
var StreetAttributes = []string{
	FldStPreMod, FldStPreDir, FldStPreTyp, FldStPreSep, FldStName,
	FldStPosTyp, FldStPosDir, FldStPosMod,
	FldLStPreDir, FldLStName, FldLStType, FldLStPosDir,
}

// StreetFilterAttributes are the street name components used to narrow
// centerline candidates when resolving from an address feature.
var StreetFilterAttributes = []string{
	FldStPreTyp, FldStName, FldStPosTyp, FldStPosMod,
}

// LocationalAttributes identify a unique site for the duplicate address
// check: the full civic number plus street name plus sub-address.
var LocationalAttributes = []string{
	FldAddNumPre, FldAddNumber, FldAddNumSuf,
	FldStPreMod, FldStPreDir, FldStPreTyp, FldStPreSep, FldStName,
	FldStPosTyp, FldStPosDir, FldStPosMod,
	FldBuilding, FldFloor, FldUnit, FldRoom, FldSeat,
}

// SkipNames are fields excluded from automatic merge field matching because
// they are identity, community, or derived fields handled elsewhere.
var SkipNames = []string{
	"DiscrpAgID", FldRCLNGUID, FldSiteNGUID,
	FldUnincComm, FldIncMuni, FldMSAGComm, FldPostComm, FldPostCode, "Post_Code4",
	FldCountry, FldState, FldCounty,
	FldLongitude, FldLatitude, "Elev",
	"GC_Address_wZIP", "GC_Address_wMSAGCOMM",
}

// DateFields are maintenance timestamps never merged between features.
var DateFields = []string{"DateUpdate", "Effective", "Expire"}

// DirectionAbbreviations maps full street directions to their NENA legacy
// abbreviations, used by vendor field expressions.
var DirectionAbbreviations = map[string]string{
	"NORTH":     "N",
	"NORTHEAST": "NE",
	"NORTHWEST": "NW",
	"SOUTH":     "S",
	"SOUTHEAST": "SE",
	"SOUTHWEST": "SW",
	"EAST":      "E",
	"WEST":      "W",
}
